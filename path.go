package ftputil

import "strings"

// Pure string operations mimicking POSIX path semantics on "/",
// independent of any live connection. These correspond to the
// path-algebra helpers ftputil.py exposes as host.path.* (ftp_path.py);
// here they're free functions since they don't need a host.

// Join joins path elements with "/", matching posixpath.join: a later
// absolute element resets the join, and empty elements are skipped
// except that a trailing empty element still forces a trailing slash.
func Join(elems ...string) string {
	var parts []string
	for i, e := range elems {
		if e == "" {
			continue
		}
		if IsAbs(e) {
			parts = []string{e}
			continue
		}
		parts = append(parts, e)
		_ = i
	}
	if len(parts) == 0 {
		return ""
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		if strings.HasSuffix(joined, "/") {
			joined += p
		} else {
			joined += "/" + p
		}
	}
	if len(elems) > 1 && elems[len(elems)-1] == "" && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

// Split splits a path into (dir, base), like posixpath.split: trailing
// separators are stripped from dir except when dir is just "/".
func Split(path string) (dir, base string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	dir, base = path[:i+1], path[i+1:]
	if dir != "/" {
		dir = strings.TrimRight(dir, "/")
		if dir == "" {
			dir = "/"
		}
	}
	return dir, base
}

// Splitext splits path into (root, ext), where ext includes the
// leading dot, matching posixpath.splitext. A leading-dot filename
// (".bashrc") is not treated as having an extension.
func Splitext(path string) (root, ext string) {
	base := Basename(path)
	dotIdx := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			dotIdx = i
			break
		}
		if base[i] == '/' {
			break
		}
	}
	// ignore leading dots that are part of a dotfile name, e.g. ".bashrc"
	leading := 0
	for leading < len(base) && base[leading] == '.' {
		leading++
	}
	if dotIdx < 0 || dotIdx < leading {
		return path, ""
	}
	cut := len(path) - (len(base) - dotIdx)
	return path[:cut], path[cut:]
}

// Basename returns the final path component.
func Basename(path string) string {
	_, base := Split(path)
	return base
}

// Dirname returns everything before the final path component.
func Dirname(path string) string {
	dir, _ := Split(path)
	return dir
}

// IsAbs reports whether path is absolute (begins with "/").
func IsAbs(path string) bool {
	return strings.HasPrefix(path, "/")
}

// Normpath collapses "." and ".." components and repeated slashes,
// preserving a single leading slash for absolute paths, matching
// posixpath.normpath.
func Normpath(path string) string {
	if path == "" {
		return "."
	}
	absolute := IsAbs(path)
	// count leading slashes: POSIX allows exactly two leading slashes to
	// be meaningful, but ftputil (and this module) normalizes to one,
	// matching ordinary Unix FTP server behavior.
	segs := strings.Split(path, "/")
	var out []string
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
			} else if !absolute {
				out = append(out, "..")
			}
		default:
			out = append(out, s)
		}
	}
	result := strings.Join(out, "/")
	if absolute {
		return "/" + result
	}
	if result == "" {
		return "."
	}
	return result
}

// Abspath joins path with cwd (if path isn't already absolute) and
// normalizes the result.
func Abspath(cwd, path string) string {
	if !IsAbs(path) {
		path = Join(cwd, path)
	}
	return Normpath(path)
}
