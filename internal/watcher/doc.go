// Package watcher follows the operation history file and reports records
// as other piptrack processes append them.
//
// The history file is replaced atomically on every save, so the watch is
// placed on its directory and events are filtered by name.
//
// Example usage:
//
//	err := watcher.Follow(ctx, "~/.piptrack/package_history.json", func(rec history.Record) {
//		fmt.Println(rec.Date, rec.Type, rec.Package)
//	})
package watcher
