// Command ftputilcli is a minimal interactive surface over package
// ftputil: one cobra subcommand per filesystem-style operation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pombredanne/sschwarzer.net-ftputil"
)

var (
	flagConfig      string
	flagHost        string
	flagPort        int
	flagUser        string
	flagPassword    string
	flagTLS         bool
	flagExplicitTLS bool
	flagPassive     bool
	flagSocksProxy  string
	flagVerbose     bool

	log = logrus.New()
)

func main() {
	root := &cobra.Command{
		Use:   "ftputilcli",
		Short: "stat/transfer/inspect a remote FTP server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagVerbose {
				log.SetLevel(logrus.DebugLevel)
			}
			if flagConfig == "" {
				return nil
			}
			cfg, err := loadConfig(flagConfig)
			if err != nil {
				return err
			}
			explicit := map[string]string{}
			for _, name := range []string{"host", "port", "user", "password", "tls", "explicit-tls", "passive", "socks-proxy"} {
				if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
					explicit[name] = f.Value.String()
				}
			}
			applyConfig(cfg)
			for name, v := range explicit {
				if err := cmd.Flags().Set(name, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "path to a YAML file of connection defaults")
	flags.StringVar(&flagHost, "host", "", "FTP server host")
	flags.IntVar(&flagPort, "port", 21, "FTP server port")
	flags.StringVar(&flagUser, "user", "anonymous", "username")
	flags.StringVar(&flagPassword, "password", "anonymous@", "password")
	flags.BoolVar(&flagTLS, "tls", false, "use implicit TLS")
	flags.BoolVar(&flagExplicitTLS, "explicit-tls", false, "use explicit AUTH TLS")
	flags.BoolVar(&flagPassive, "passive", true, "force passive-mode data connections")
	flags.StringVar(&flagSocksProxy, "socks-proxy", "", "SOCKS5 proxy address (host:port) to dial through")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		lsCmd(), statCmd(), getCmd(), putCmd(),
		mkdirCmd(), rmdirCmd(), rmCmd(), mvCmd(), syncCmd(), walkCmd(),
	)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func dial() (*ftputil.Host, error) {
	passive := flagPassive
	opts := ftputil.Options{
		Host:       flagHost,
		Port:       flagPort,
		User:       flagUser,
		Password:   flagPassword,
		TLS:        flagTLS || flagExplicitTLS,
		Implicit:   flagTLS,
		Passive:    &passive,
		SocksProxy: flagSocksProxy,
	}
	log.WithField("host", flagHost).Debug("dialing")
	return ftputil.NewHost(context.Background(), ftputil.NewSessionFactory(opts))
}

func withHost(fn func(h *ftputil.Host) error) error {
	h, err := dial()
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "list a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return withHost(func(h *ftputil.Host) error {
				names, err := h.Listdir(path)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			})
		},
	}
}

func statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "stat a remote path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(func(h *ftputil.Host) error {
				rec, err := h.Stat(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s\tsize=%d\tmtime=%d\n", rec.Name, rec.Size, rec.MTime)
				return nil
			})
		},
	}
}

func getCmd() *cobra.Command {
	var binary bool
	cmd := &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := textOrBinary(binary)
			return withHost(func(h *ftputil.Host) error {
				return h.Download(args[0], args[1], mode)
			})
		},
	}
	cmd.Flags().BoolVarP(&binary, "binary", "b", true, "binary transfer mode")
	return cmd
}

func putCmd() *cobra.Command {
	var binary bool
	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "upload a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := textOrBinary(binary)
			return withHost(func(h *ftputil.Host) error {
				return h.Upload(args[0], args[1], mode)
			})
		},
	}
	cmd.Flags().BoolVarP(&binary, "binary", "b", true, "binary transfer mode")
	return cmd
}

func mkdirCmd() *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(func(h *ftputil.Host) error {
				if parents {
					return h.Makedirs(args[0])
				}
				return h.Mkdir(args[0])
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create intermediate directories")
	return cmd
}

func rmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <path>",
		Short: "remove an empty remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(func(h *ftputil.Host) error { return h.Rmdir(args[0]) })
		},
	}
}

func rmCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "remove a remote file (or tree, with -r)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(func(h *ftputil.Host) error {
				if recursive {
					return h.Rmtree(args[0], false, nil)
				}
				return h.Remove(args[0])
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove recursively")
	return cmd
}

func mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "rename a remote path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(func(h *ftputil.Host) error { return h.Rename(args[0], args[1]) })
		},
	}
}

func syncCmd() *cobra.Command {
	var download bool
	var binary bool
	cmd := &cobra.Command{
		Use:   "sync <local> <remote>",
		Short: "transfer only if the source is newer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := textOrBinary(binary)
			return withHost(func(h *ftputil.Host) error {
				var moved bool
				var err error
				if download {
					moved, err = h.DownloadIfNewer(args[1], args[0], mode)
				} else {
					moved, err = h.UploadIfNewer(args[0], args[1], mode)
				}
				if err != nil {
					return err
				}
				log.WithField("transferred", moved).Info("sync complete")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&download, "download", false, "sync remote->local instead of local->remote")
	cmd.Flags().BoolVarP(&binary, "binary", "b", true, "binary transfer mode")
	return cmd
}

func walkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "walk <path>",
		Short: "recursively list a remote tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(func(h *ftputil.Host) error {
				return h.Walk(args[0], true, nil, func(dir string, subdirs, files []string) error {
					for _, f := range files {
						fmt.Println(dir + "/" + f)
					}
					return nil
				})
			})
		},
	}
}

func textOrBinary(binary bool) string {
	if binary {
		return "b"
	}
	return ""
}
