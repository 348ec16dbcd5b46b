/*
Package atomicfile writes a file so that readers see either the old content
or the complete new content, never a partial write.

Data goes to a temporary file in the destination directory which is renamed
over the destination on a successful Close. If any Write fails, or the
caller gives up with RemoveIfNotClosed, the temporary file is deleted and
the destination is left untouched.

	func writeExport(path string, data []byte) error {
		w, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		// a no-op after Close
		defer w.RemoveIfNotClosed()

		if _, err = w.Write(data); err != nil {
			return err
		}
		return w.Close()
	}
*/
package atomicfile
