// Package storage manages the transient working image directory.
//
// Images are written with a temporary file and an atomic rename and are
// named by post id plus extension. Cleanup removes the directory after a
// successful build and is idempotent. WriteFileAtomic is shared with the
// metadata store for the posts document.
package storage
