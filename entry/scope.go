package entry

import (
	"github.com/kjk/entrylog/log"
)

// Log creates an entry for path, calls fn to fill it and finalizes it
// when fn returns or panics. fn can call e.CancelAutosave() to not save it.
//
// If fn returns an error the entry is still saved (unless autosave was
// cancelled) and fn's error is returned. A failed save is always logged
// and returned when fn didn't fail.
func Log(path string, fn func(e *Entry) error) (err error) {
	e, err := New(path)
	if err != nil {
		return err
	}
	defer func() {
		errSave := e.Close()
		if errSave == nil {
			return
		}
		log.Errorf("entry.Log: saving entry %s to '%s' failed with '%s'\n", e.id(), path, errSave)
		if err == nil {
			err = errSave
		}
	}()
	return fn(e)
}

func (e *Entry) id() string {
	s, _ := e.vals[KeyEntryID].(string)
	return s
}
