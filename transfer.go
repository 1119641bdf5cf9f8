package ftputil

import (
	"io"
	"os"
	"time"
)

// copyChunkSize is the buffer size §4.I's copyfileobj streams through.
const copyChunkSize = 64 * 1024

// Upload implements §4.I upload: copy localPath to remotePath.
// mode is "" for text or "b" for binary.
func (h *Host) Upload(localPath, remotePath, mode string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return wrapOSError("open local file", err)
	}
	defer local.Close()
	remote, err := h.File(remotePath, "w"+mode)
	if err != nil {
		return err
	}
	defer remote.Close()
	return copyChunked(remote, local)
}

// Download implements §4.I download: copy remotePath to localPath.
func (h *Host) Download(remotePath, localPath, mode string) error {
	remote, err := h.File(remotePath, "r"+mode)
	if err != nil {
		return err
	}
	defer remote.Close()
	local, err := os.Create(localPath)
	if err != nil {
		return wrapOSError("create local file", err)
	}
	defer local.Close()
	return copyChunked(local, remote)
}

// UploadIfNewer implements §4.I upload_if_newer: transfers iff the
// remote target doesn't exist, or the local source is newer than the
// remote target by more than the remote's mtime precision (the §9
// open-question resolution: compare with the precision envelope
// rather than a bare strict '>'). Returns whether bytes moved.
func (h *Host) UploadIfNewer(localPath, remotePath, mode string) (bool, error) {
	localInfo, err := os.Stat(localPath)
	if err != nil {
		return false, wrapOSError("stat local file", err)
	}
	if h.Exists(remotePath) {
		rec, err := h.Stat(remotePath)
		if err != nil {
			return false, err
		}
		remoteMtime := time.Unix(rec.MTime, 0).Add(-h.timeShift)
		threshold := remoteMtime.Add(time.Duration(rec.MTimePrec) * time.Second)
		if !localInfo.ModTime().After(threshold) {
			return false, nil
		}
	}
	if err := h.Upload(localPath, remotePath, mode); err != nil {
		return false, err
	}
	return true, nil
}

// DownloadIfNewer implements §4.I download_if_newer, symmetric to
// UploadIfNewer.
func (h *Host) DownloadIfNewer(remotePath, localPath, mode string) (bool, error) {
	rec, err := h.Stat(remotePath)
	if err != nil {
		return false, err
	}
	remoteMtime := time.Unix(rec.MTime, 0).Add(-h.timeShift)
	if localInfo, statErr := os.Stat(localPath); statErr == nil {
		threshold := localInfo.ModTime().Add(time.Duration(rec.MTimePrec) * time.Second)
		if !remoteMtime.After(threshold) {
			return false, nil
		}
	} else if !os.IsNotExist(statErr) {
		return false, wrapOSError("stat local file", statErr)
	}
	if err := h.Download(remotePath, localPath, mode); err != nil {
		return false, err
	}
	return true, nil
}

func copyChunked(dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyChunkSize)
	_, err := io.CopyBuffer(dst, src, buf)
	return err
}
