// Package entry builds log entries and saves them as single JSON lines
// with package logstore.
//
// An Entry is an ordered set of key / value pairs. New sets two of them:
// "time" (creation time, e.g. "Tue May 20 17:13:22 2014") and "entry-id"
// (5 random letters and digits).
//
// An Entry saves itself when it's finalized with Close, unless autosave was
// cancelled:
//
//	e, err := entry.New("app.log")
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//	e.Set("user", "kjk")
//	e.Set("tags", []string{"a", "b"})
//
// Log does the same and also makes sure the entry is finalized if fn panics:
//
//	err := entry.Log("app.log", func(e *entry.Entry) error {
//	    e.Set("user", "kjk")
//	    return nil
//	})
package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kjk/entrylog/logstore"
)

const (
	KeyTime    = "time"
	KeyEntryID = "entry-id"

	// format of "time" field, same as time.ANSIC
	TimeLayout = "Mon Jan _2 15:04:05 2006"

	entryIDLen = 5
)

const alphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomAlphaNumeric returns a random string of n letters and digits.
// Not cryptographically secure.
func RandomAlphaNumeric(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphaNumeric[rand.IntN(len(alphaNumeric))]
	}
	return string(b)
}

type Entry struct {
	path string
	keys []string
	vals map[string]any

	autosave  bool
	finalized bool
}

// New creates an entry that will be saved to the log file at path
func New(path string) (*Entry, error) {
	if path == "" {
		return nil, fmt.Errorf("entry: path is empty: %w", logstore.ErrInvalidArgument)
	}
	e := &Entry{
		path:     path,
		vals:     map[string]any{},
		autosave: true,
	}
	e.Set(KeyTime, time.Now().Format(TimeLayout))
	e.Set(KeyEntryID, RandomAlphaNumeric(entryIDLen))
	return e, nil
}

// Path returns path of the log file the entry is saved to
func (e *Entry) Path() string {
	return e.path
}

// Set sets the value for key. A new key goes last, an existing one keeps
// its position. v must be serializable with encoding/json.
// "time" and "entry-id" can be overwritten but shouldn't be.
func (e *Entry) Set(key string, v any) {
	if _, ok := e.vals[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.vals[key] = v
}

func (e *Entry) Get(key string) (any, bool) {
	v, ok := e.vals[key]
	return v, ok
}

func (e *Entry) Delete(key string) {
	if _, ok := e.vals[key]; !ok {
		return
	}
	delete(e.vals, key)
	for i, k := range e.keys {
		if k == key {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in the order they were first set
func (e *Entry) Keys() []string {
	return append([]string(nil), e.keys...)
}

func (e *Entry) Len() int {
	return len(e.keys)
}

// CancelAutosave disables saving on Close
func (e *Entry) CancelAutosave() {
	e.autosave = false
}

// EnableAutosave re-enables saving on Close. No effect after Close.
func (e *Entry) EnableAutosave() {
	e.autosave = true
}

func (e *Entry) Autosave() bool {
	return e.autosave
}

// MarshalJSON returns the entry as a JSON object on a single line,
// keys in the order they were set
func (e *Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// avoid unnecessary escaping
	enc.SetEscapeHTML(false)

	var res bytes.Buffer
	res.WriteByte('{')
	for i, k := range e.keys {
		if i > 0 {
			res.WriteByte(',')
		}
		buf.Reset()
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		res.Write(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
		res.WriteByte(':')
		buf.Reset()
		if err := enc.Encode(e.vals[k]); err != nil {
			return nil, fmt.Errorf("entry: can't marshal value of '%s': %w", k, err)
		}
		// a value with custom MarshalJSON can produce
		// indented output; the log needs one line per entry
		if err := json.Compact(&res, buf.Bytes()); err != nil {
			return nil, err
		}
	}
	res.WriteByte('}')
	return res.Bytes(), nil
}

// Save appends the entry to the log file. Every call appends a new line.
func (e *Entry) Save() error {
	d, err := e.MarshalJSON()
	if err != nil {
		return err
	}
	return logstore.Append(e.path, string(d))
}

// Close finalizes the entry: saves it if autosave is enabled.
// Only the first call does anything so it's fine to defer Close and
// also call it explicitly.
func (e *Entry) Close() error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	if !e.autosave {
		return nil
	}
	return e.Save()
}
