/*
Package vfs emulates a hierarchical filesystem on top of a flat object store
and a metadata table.

Every file lives at {userId}/uploads/{folder/}{name}. A folder is a zero-byte
marker object whose key ends with a separator, mirrored by a metadata record
with fileType "folder". Folders implied by deeper keys behave as folders even
without a marker.

The Resolver is the only place that decides whether a target is a folder.
Operations that cascade over a folder (delete, star, share, move, copy,
archive) expand it through a prefix scan of the metadata table and report
per-item outcomes instead of aborting on the first failure.

Name collisions on upload and transfer are resolved with a conditional create
of "name (n).ext", probing n = 0, 1, 2 ... up to Options.RenameLimit.

	objects, err := s3.NewStore(ctx, s3cfg, collector, tracker)
	...
	files, err := badger.NewStore(badgerCfg, collector, tracker)
	...
	svc := vfs.NewService(objects, files, vfs.DefaultOptions(), logger)
*/
package vfs
