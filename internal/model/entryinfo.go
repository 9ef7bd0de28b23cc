package model

import (
	"os"
	"time"
)

//PathInfo holds info about one dir entry in a file tree (of either the authoritative OR the target tree).
type PathInfo struct {
	Exists    bool
	FullPath  string
	IsDir     bool
	IsRegular bool
	Size      int64 // in bytes
	ModTime   time.Time
	Mode      os.FileMode
}

//NewPathInfo describes an existing entry at fullPath.
func NewPathInfo(fullPath string, fi os.FileInfo) PathInfo {
	return PathInfo{
		Exists:    true,
		FullPath:  fullPath,
		IsDir:     fi.IsDir(),
		IsRegular: fi.Mode().IsRegular(),
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
		Mode:      fi.Mode(),
	}
}

//MissingPathInfo describes an entry that does not exist at fullPath.
func MissingPathInfo(fullPath string) PathInfo {
	return PathInfo{FullPath: fullPath}
}

//EntryInfo holds info about same dir entry in BOTH file trees.
//Which physical tree plays the authoritative role depends on the SyncMode of the pass.
type EntryInfo struct {
	AuthPathInfo, TargetPathInfo PathInfo
}

//FilesMatch is the shallow comparison: both sides are regular files of the same size,
//and their modification times differ by no more than window. File content is never read.
func (e *EntryInfo) FilesMatch(window time.Duration) bool {
	a, t := e.AuthPathInfo, e.TargetPathInfo
	if !a.Exists || !t.Exists || !a.IsRegular || !t.IsRegular {
		return false
	}
	if a.Size != t.Size {
		return false
	}
	diff := a.ModTime.Sub(t.ModTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

//ResolveOperationKind decides what has to be done with the authoritative entry in the given mode.
//OpKindDescend means that both sides are directories, and their contents have to be reconciled.
func (e *EntryInfo) ResolveOperationKind(mode SyncMode, window time.Duration) OperationKind {
	a, t := e.AuthPathInfo, e.TargetPathInfo
	switch {
	case !a.Exists:
		return OpKindNone
	case a.IsDir:
		if t.Exists && t.IsDir {
			return OpKindDescend
		}
		if mode == ModeCopy {
			return OpKindCreateDir
		}
		return OpKindRemoveDir
	case a.IsRegular:
		if e.FilesMatch(window) {
			return OpKindNone
		}
		if mode == ModeCopy {
			return OpKindCopyFile
		}
		return OpKindRemoveFile
	default: // devices, sockets, pipes and the like are never synchronized
		return OpKindNone
	}
}
