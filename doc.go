// Package icelake reads Iceberg tables laid out as a tree of metadata files
// on a local directory or an S3 bucket.
//
// A Table discovers the latest metadata version (metadata/version-hint.text
// when present, otherwise the lexically greatest metadata/*.metadata.json),
// decodes and caches it keyed by last-updated-ms, and walks the current
// snapshot's manifest list and manifests down to the data files:
//
//	t, err := icelake.Open(ctx, "s3://warehouse/db/events")
//	if err != nil {
//		return err
//	}
//	for f, err := range t.DataFiles(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(f.FilePath, f.RecordCount)
//	}
//
// Paths recorded in metadata are absolute; RelPath strips the table location
// from them before they are handed to the storage backend.
//
// Errors are defined in package icelakeerr and can be matched by class with
// errors.Is.
package icelake
