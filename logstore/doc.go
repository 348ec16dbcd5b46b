// Package logstore appends JSON lines to a log file and reads them back
// from the newest to the oldest.
//
// # File Format
//
// Each entry is a single line of JSON. Entries are separated by one blank
// line. The file starts directly with the first entry and there's no
// separator after the last one:
//
//	{"time":"Tue May 20 17:13:22 2014","entry-id":"7WHHJ","msg":"first"}
//
//	{"time":"Tue May 20 17:13:25 2014","entry-id":"aZ0qk","msg":"second"}
//
// # Writing
//
// [Append] opens the file, takes an exclusive advisory lock, writes the
// separator (if the file is not empty) and the line, and closes the file.
// Appends from cooperating processes never interleave.
//
//	err := logstore.Append("app.log", `{"msg":"hello"}`)
//
// # Reading
//
// [Store.NextEntry] walks the file backward. The first call opens the file
// and takes a shared lock which is held until the beginning of the file is
// reached, [Store.EndRead] is called or the Store is garbage collected.
//
//	s, err := logstore.New("app.log")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	for {
//	    v, ok, err := s.NextEntry()
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        break
//	    }
//	    // v is map[string]any for entries written by package entry
//	}
//
// # Locking Caveat
//
// While a read is in progress writers block, including writers in the same
// process. A reader that never finishes its read starves all writers.
// Finish the iteration or call EndRead as soon as you're done.
//
// # Thread Safety
//
// A Store is not safe for concurrent use. Package level [Append] is.
package logstore
