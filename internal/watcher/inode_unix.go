//go:build unix

package watcher

import "syscall"

// getInode pulls the inode number out of os.FileInfo.Sys(). The inode
// survives renames, which is what lets a move be told apart from a
// delete plus add.
func getInode(sys interface{}) uint64 {
	if stat, ok := sys.(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
