package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func testLogPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.log")
}

func readFileString(t *testing.T, path string) string {
	d, err := os.ReadFile(path)
	assert.NoError(t, err)
	return string(d)
}

func appendJSON(t *testing.T, path string, v any) {
	d, err := json.Marshal(v)
	assert.NoError(t, err)
	err = Append(path, string(d))
	assert.NoError(t, err)
}

// entryN returns the "n" field of a decoded entry
func entryN(t *testing.T, v any) int64 {
	n, err := v.(map[string]any)["n"].(json.Number).Int64()
	assert.NoError(t, err)
	return n
}

func TestNewEmptyPath(t *testing.T) {
	_, err := New("")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	err = Append("", `{}`)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestAppendRejectsBadLines(t *testing.T) {
	path := testLogPath(t)
	err := Append(path, "")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	err = Append(path, "{\"a\":\n1}")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "rejected append must not create the file")
}

func TestAppendSeparator(t *testing.T) {
	path := testLogPath(t)
	lines := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`}
	for i, line := range lines {
		err := Append(path, line)
		assert.NoError(t, err)
		exp := strings.Join(lines[:i+1], "\n\n")
		assert.Equal(t, exp, readFileString(t, path))
	}

	physical := strings.Split(readFileString(t, path), "\n")
	nBlank := 0
	nNonBlank := 0
	for _, l := range physical {
		if strings.TrimSpace(l) == "" {
			nBlank++
		} else {
			nNonBlank++
		}
	}
	assert.Equal(t, len(lines), nNonBlank)
	assert.Equal(t, len(lines)-1, nBlank)
}

func TestAppendToMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "test.log")
	err := Append(path, `{}`)
	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr), "expected *IOError, got %v", err)
	assert.Equal(t, "open", ioErr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStoreAppendSync(t *testing.T) {
	path := testLogPath(t)
	s, err := New(path)
	assert.NoError(t, err)
	s.SyncWrite = true
	assert.NoError(t, s.Append(`{"a":1}`))
	assert.NoError(t, s.Append(`{"a":2}`))
	assert.Equal(t, "{\"a\":1}\n\n{\"a\":2}", readFileString(t, path))
}

func TestNextEntryNoFile(t *testing.T) {
	path := testLogPath(t)
	s, err := New(path)
	assert.NoError(t, err)
	v, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Nil(t, s.file)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "reading must not create the file")
}

func TestNextEntryEmptyFile(t *testing.T) {
	path := testLogPath(t)
	err := os.WriteFile(path, nil, 0644)
	assert.NoError(t, err)
	s, err := New(path)
	assert.NoError(t, err)
	_, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, s.file)
}

func TestReverseOrder(t *testing.T) {
	path := testLogPath(t)
	n := 25
	for i := 0; i < n; i++ {
		appendJSON(t, path, map[string]any{"n": i, "name": fmt.Sprintf("entry %d", i)})
	}

	for _, chunkSize := range []int{0, 1, 7, 100} {
		s, err := New(path)
		assert.NoError(t, err)
		s.ChunkSize = chunkSize
		for i := n - 1; i >= 0; i-- {
			v, ok, err := s.NextEntry()
			assert.NoError(t, err)
			assert.True(t, ok)
			m := v.(map[string]any)
			assert.Equal(t, json.Number(fmt.Sprint(i)), m["n"])
			assert.Equal(t, fmt.Sprintf("entry %d", i), m["name"])
		}
		v, ok, err := s.NextEntry()
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
		// exhausting the file ends the read
		assert.Nil(t, s.file)
		assert.Nil(t, s.lines)
	}
}

func TestRoundTrip(t *testing.T) {
	path := testLogPath(t)
	data := map[string]any{
		"time":     "Tue May 20 17:13:22 2014",
		"entry-id": "7WHHJ",
		"str":      "multi\nline\r\nstring with \"quotes\" and <html>",
		"num":      3.25,
		"int":      42,
		"big":      int64(1715000000123456789),
		"bool":     true,
		"null":     nil,
		"list":     []any{"a", 1, false, nil, []any{}},
		"nested":   map[string]any{"deeper": map[string]any{"x": "y"}},
	}
	appendJSON(t, path, data)
	exp := map[string]any{
		"time":     "Tue May 20 17:13:22 2014",
		"entry-id": "7WHHJ",
		"str":      "multi\nline\r\nstring with \"quotes\" and <html>",
		"num":      json.Number("3.25"),
		"int":      json.Number("42"),
		"big":      json.Number("1715000000123456789"),
		"bool":     true,
		"null":     nil,
		"list":     []any{"a", json.Number("1"), false, nil, []any{}},
		"nested":   map[string]any{"deeper": map[string]any{"x": "y"}},
	}

	s, err := New(path)
	assert.NoError(t, err)
	defer s.Close()
	v, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, exp, v)
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"ns": 1715000000123456789, "f": -1.5e3}`))
	assert.NoError(t, err)
	m := v.(map[string]any)
	ns, err := m["ns"].(json.Number).Int64()
	assert.NoError(t, err)
	assert.Equal(t, int64(1715000000123456789), ns)
	assert.Equal(t, json.Number("-1.5e3"), m["f"])

	v, err = DecodeJSON([]byte(" 7 \r"))
	assert.NoError(t, err)
	assert.Equal(t, json.Number("7"), v)

	var syntaxErr *json.SyntaxError
	for _, s := range []string{`{"a":1} x`, `{"a":1}{}`, `{"a": broken`, `{"a":`, ``} {
		_, err = DecodeJSON([]byte(s))
		assert.True(t, errors.As(err, &syntaxErr), "'%s': expected *json.SyntaxError, got %v", s, err)
	}
}

func TestNonObjectValues(t *testing.T) {
	path := testLogPath(t)
	assert.NoError(t, Append(path, `[1,2]`))
	assert.NoError(t, Append(path, `"str"`))
	assert.NoError(t, Append(path, `null`))

	s, err := New(path)
	assert.NoError(t, err)
	v, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok, "null is an entry, not the end")
	assert.Nil(t, v)
	v, _, err = s.NextEntry()
	assert.NoError(t, err)
	assert.Equal(t, "str", v)
	v, _, err = s.NextEntry()
	assert.NoError(t, err)
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, v)
	_, ok, err = s.NextEntry()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestNoEntryOnlyOnce(t *testing.T) {
	path := testLogPath(t)
	appendJSON(t, path, map[string]any{"n": 1})
	appendJSON(t, path, map[string]any{"n": 2})

	s, err := New(path)
	assert.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, ok, err := s.NextEntry()
		assert.NoError(t, err)
		assert.True(t, ok)
	}
	_, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.False(t, ok)

	// a new read sees new data, starting from the newest
	appendJSON(t, path, map[string]any{"n": 3})
	v, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), entryN(t, v))
	s.EndRead()
}

func TestSkipsWhitespaceLines(t *testing.T) {
	path := testLogPath(t)
	content := "{\"n\":1}\n\n   \n\t\n{\"n\":2}\r\n\r\n{\"n\":3}\n"
	err := os.WriteFile(path, []byte(content), 0644)
	assert.NoError(t, err)

	s, err := New(path)
	assert.NoError(t, err)
	var got []int64
	for {
		v, ok, err := s.NextEntry()
		assert.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, entryN(t, v))
	}
	assert.Equal(t, []int64{3, 2, 1}, got)
}

func TestMalformedLine(t *testing.T) {
	path := testLogPath(t)
	content := `{"n":1}` + "\n\n" + `{"n": broken` + "\n\n" + `{"n":3}`
	err := os.WriteFile(path, []byte(content), 0644)
	assert.NoError(t, err)

	s, err := New(path)
	assert.NoError(t, err)
	v, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), entryN(t, v))

	_, ok, err = s.NextEntry()
	assert.False(t, ok)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr), "expected *ParseError, got %v", err)
	assert.Equal(t, `{"n": broken`, parseErr.Line)
	assert.Equal(t, int64(len(`{"n":1}`)+2), parseErr.Offset)
	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))

	// the bad line is not skipped
	_, ok, err = s.NextEntry()
	assert.False(t, ok)
	assert.True(t, errors.As(err, &parseErr))

	s.EndRead()
	v, ok, err = s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), entryN(t, v))
	s.EndRead()
}

func TestSequentialWritersDontInterleave(t *testing.T) {
	path := testLogPath(t)
	big := strings.Repeat("x", 256*1024)
	appendJSON(t, path, map[string]any{"writer": "a", "data": big})
	appendJSON(t, path, map[string]any{"writer": "b", "data": big})

	physical := strings.Split(readFileString(t, path), "\n")
	var nonBlank []string
	for _, l := range physical {
		if l != "" {
			nonBlank = append(nonBlank, l)
		}
	}
	assert.Equal(t, 2, len(nonBlank))
	for i, l := range nonBlank {
		var m map[string]any
		err := json.Unmarshal([]byte(l), &m)
		assert.NoError(t, err)
		assert.Equal(t, string(rune('a'+i)), m["writer"])
	}
}

func TestReaderBlocksWriter(t *testing.T) {
	path := testLogPath(t)
	appendJSON(t, path, map[string]any{"n": 1})
	appendJSON(t, path, map[string]any{"n": 2})

	s, err := New(path)
	assert.NoError(t, err)
	_, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok)

	done := make(chan error, 1)
	go func() {
		done <- Append(path, `{"n":3}`)
	}()
	select {
	case <-done:
		t.Fatal("append finished while a read was in progress")
	case <-time.After(100 * time.Millisecond):
	}

	s.EndRead()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("append didn't finish after EndRead")
	}
	assert.Equal(t, "{\"n\":1}\n\n{\"n\":2}\n\n{\"n\":3}", readFileString(t, path))
}

func TestEndReadWithoutCursor(t *testing.T) {
	s, err := New(testLogPath(t))
	assert.NoError(t, err)
	s.EndRead()
	s.EndRead()
	assert.NoError(t, s.Close())
}

func TestEntries(t *testing.T) {
	path := testLogPath(t)
	for i := 0; i < 5; i++ {
		appendJSON(t, path, map[string]any{"n": i})
	}
	s, err := New(path)
	assert.NoError(t, err)

	seq, errFn := s.Entries()
	var got []int64
	for v := range seq {
		got = append(got, entryN(t, v))
	}
	assert.NoError(t, errFn())
	assert.Equal(t, []int64{4, 3, 2, 1, 0}, got)

	// breaking out of the loop early releases the lock so we can append
	seq, errFn = s.Entries()
	for range seq {
		break
	}
	assert.NoError(t, errFn())
	assert.Nil(t, s.file)
	appendJSON(t, path, map[string]any{"n": 5})
}

func TestEntriesParseError(t *testing.T) {
	path := testLogPath(t)
	err := os.WriteFile(path, []byte("not json\n\n{}"), 0644)
	assert.NoError(t, err)
	s, err := New(path)
	assert.NoError(t, err)

	seq, errFn := s.Entries()
	n := 0
	for range seq {
		n++
	}
	assert.Equal(t, 1, n)
	var parseErr *ParseError
	assert.True(t, errors.As(errFn(), &parseErr))
	assert.Nil(t, s.file)
}

// startReadAndForget leaves a Store with an open cursor unreachable
func startReadAndForget(t *testing.T, path string) {
	s, err := New(path)
	assert.NoError(t, err)
	_, ok, err := s.NextEntry()
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestCollectedStoreReleasesLock(t *testing.T) {
	path := testLogPath(t)
	appendJSON(t, path, map[string]any{"n": 1})
	startReadAndForget(t, path)

	done := make(chan error, 1)
	go func() {
		done <- Append(path, `{"n":2}`)
	}()
	timeout := time.After(10 * time.Second)
	for {
		runtime.GC()
		select {
		case err := <-done:
			assert.NoError(t, err)
			return
		case <-timeout:
			t.Fatal("lock of a garbage collected Store was not released")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
