// Package stickers holds the sticker-set domain: the set registry, the pack
// parser, the reconciler that folds server results into the registry, and
// the preview box that drives one install request.
//
// # Flow
//
// A Box fetches a set through a Transport, parses the response with Parse,
// and hands the result to Reconciler.ApplyFetched. Install sends the install
// request asynchronously; the completion is folded in by
// Reconciler.ApplyInstalled, which reorders the registry, prunes the custom
// bucket, persists the changed lists and notifies observers.
//
//	reg := stickers.NewRegistry()
//	rec := stickers.NewReconciler(reg, stickers.WithPersister(store))
//	box := stickers.NewBox(tg.InputByShortName("Cats"), client, docs, rec)
//	defer box.Close()
//
//	if err := box.Load(ctx); err != nil {
//	    return err
//	}
//	pending, err := box.Install()
//	if err != nil {
//	    return err
//	}
//	m, err := pending.Wait(ctx)
//
// # Concurrency
//
// Registry serializes every mutation behind one mutex, and each reconcile
// runs as a single critical section. A Box allows at most one outstanding
// install request.
package stickers
