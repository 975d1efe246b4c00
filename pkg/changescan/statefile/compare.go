package statefile

import "errors"

// Handler receives the differences found by Compare.
type Handler interface {
	Created(item Item) error
	Deleted(item Item) error
	Changed(oldItem, newItem Item) error
}

// Compare merges two key-sorted sources and reports every key present on
// only one side, and every key whose digest differs. Handler callbacks are
// made in ascending key order. It reports whether any difference was seen.
//
// Both sources must be sorted ascending by key; unsorted input yields wrong
// results rather than an error.
func Compare(oldSrc, newSrc ItemSource, h Handler) (bool, error) {
	var (
		oldItem, newItem Item
		oldOK, newOK     bool
		readOld, readNew = true, true
		changed          bool
		err              error
	)

	for {
		if readOld {
			if oldItem, oldOK, err = oldSrc.Next(); err != nil {
				return changed, err
			}
			readOld = false
		}
		if readNew {
			if newItem, newOK, err = newSrc.Next(); err != nil {
				return changed, err
			}
			readNew = false
		}

		switch {
		case !oldOK && !newOK:
			return changed, nil

		case !oldOK:
			changed = true
			if err := h.Created(newItem); err != nil {
				return changed, err
			}
			readNew = true

		case !newOK:
			changed = true
			if err := h.Deleted(oldItem); err != nil {
				return changed, err
			}
			readOld = true

		case oldItem.Key == newItem.Key:
			if oldItem.Digest != newItem.Digest {
				changed = true
				if err := h.Changed(oldItem, newItem); err != nil {
					return changed, err
				}
			}
			readOld, readNew = true, true

		case oldItem.Key < newItem.Key:
			// The old item has no counterpart left on the new side.
			changed = true
			if err := h.Deleted(oldItem); err != nil {
				return changed, err
			}
			readOld = true

		default:
			changed = true
			if err := h.Created(newItem); err != nil {
				return changed, err
			}
			readNew = true
		}
	}
}

// CompareFiles compares the state files at oldPath and newPath. Missing
// files read as empty. Both readers are closed before returning.
func CompareFiles(factory IOFactory, oldPath, newPath string, h Handler) (changed bool, err error) {
	oldReader, err := Open(factory, oldPath)
	if err != nil {
		return false, err
	}
	defer func() { err = errors.Join(err, oldReader.Close()) }()

	newReader, err := Open(factory, newPath)
	if err != nil {
		return false, err
	}
	defer func() { err = errors.Join(err, newReader.Close()) }()

	return Compare(oldReader, newReader, h)
}
