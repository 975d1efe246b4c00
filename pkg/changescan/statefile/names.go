package statefile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	levelPrefix    = "dirs."
	stateSuffix    = ".state"
	listSuffix     = ".list"
	dirStatePrefix = "dir."
)

// LevelStateName is the file holding the directories of one level.
func LevelStateName(level int) string {
	return levelPrefix + strconv.Itoa(level) + stateSuffix
}

// LevelListName is the transient list of directory paths of one level.
func LevelListName(level int) string {
	return levelPrefix + strconv.Itoa(level) + listSuffix
}

// DirStateName is the file holding the files of one directory, keyed by the
// digest of its relative path.
func DirStateName(pathDigest string) string {
	return dirStatePrefix + pathDigest + stateSuffix
}

// ScanLevels returns the deepest level that has a level state file in dir,
// or -1 when there is none. A missing dir is treated as empty.
func ScanLevels(factory IOFactory, dir string) (int, error) {
	names, err := factory.ReadDirNames(dir)
	if errors.Is(err, os.ErrNotExist) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("listing %s: %w", dir, err)
	}

	deepest := -1
	for _, name := range names {
		if !strings.HasPrefix(name, levelPrefix) || !strings.HasSuffix(name, stateSuffix) {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, levelPrefix), stateSuffix))
		if err != nil || level < 0 {
			continue
		}
		if level > deepest {
			deepest = level
		}
	}
	return deepest, nil
}
