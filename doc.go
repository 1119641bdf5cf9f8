// Package ftputil presents a remote FTP server as a local-filesystem-
// like API: Stat/Lstat/Listdir/IsDir/IsFile/IsLink/Mkdir/Rmdir/Remove/
// Rename/Walk/File, built on top of a Session that only the LIST
// command's unparsed text form is trusted to describe (stat, like a
// filesystem's, is emulated by parsing that text).
//
// A Host is the entry point:
//
//	h, err := ftputil.NewHost(ctx, ftputil.NewSessionFactory(ftputil.Options{
//		Host: "ftp.example.com", User: "anonymous", Password: "guest",
//	}))
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//
// or, using the scoped-acquisition helper that guarantees Close on
// every exit path:
//
//	err := ftputil.WithHost(ctx, factory, func(h *ftputil.Host) error {
//		return h.Mkdir("/incoming/new")
//	})
//
// Concurrent transfers are possible because File spawns a pooled child
// session per open stream rather than blocking the primary connection;
// a host handle itself is not safe for concurrent use by multiple
// goroutines.
package ftputil
