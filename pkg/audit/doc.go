// Package audit records container history events such as a reviewable being
// submitted, published or commented on.
//
// A Recorder stamps events and hands them to a Storage. Storage backends
// include MemoryStorage for tests, the PostgreSQL and SQLite moderation stores,
// and AsyncWriter, which batches events from concurrent callers in front of any
// BatchWriter.
//
// # Usage
//
//	writer, err := audit.NewAsyncWriter(pgStore, audit.AsyncOptions{BatchSize: 50})
//	if err != nil {
//		return err
//	}
//	defer writer.Close(context.Background())
//
//	recorder, err := audit.NewRecorder(writer)
//	if err != nil {
//		return err
//	}
//	engine, err := moderation.NewEngine(store, providers,
//		moderation.WithEventRecorder(recorder),
//	)
//
// History entries are best effort from the engine's point of view: a failed
// write is logged and never rolls back a committed transition.
package audit
