//go:build windows

package watcher

// getInode returns 0 on Windows; there is no cheap stable file identity
// through os.FileInfo.Sys() there, so move detection degrades to
// delete plus add.
func getInode(sys interface{}) uint64 {
	return 0
}
