// Package loader materializes a program image into a store.
package loader

import (
	"fmt"

	"glacia/pkg/dbil"
	"glacia/pkg/store"
)

// Load replaces everything in st with img: all program and runtime tables
// are cleared and the image is inserted in one transaction. Image ids are
// remapped to store ids drawn from ids.
func Load(st store.Store, img *dbil.Image, ids store.IDSource) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if ids == nil {
		ids = store.ShortID
	}
	return store.Update(st, func(tx store.Tx) error {
		if err := store.ClearAll(tx); err != nil {
			return err
		}

		funcs := make(map[int]string, len(img.Functions))
		for _, f := range img.Functions {
			rec := &store.Function{Label: f.Label, ReturnType: f.ReturnType, Arguments: f.Arguments}
			id, err := store.Create(tx, store.Functions, ids, rec)
			if err != nil {
				return fmt.Errorf("load function %s: %w", f.Label, err)
			}
			funcs[f.ID] = id
		}

		// Ids are allocated first so links may point forward in the image.
		instrs := make(map[int]string, len(img.Instructions))
		for _, in := range img.Instructions {
			id, err := store.Create(tx, store.Instructions, ids, &store.Instruction{})
			if err != nil {
				return fmt.Errorf("load instruction %d: %w", in.ID, err)
			}
			instrs[in.ID] = id
		}
		for _, in := range img.Instructions {
			rec := &store.Instruction{
				ID:         instrs[in.ID],
				FunctionID: funcs[in.Function],
				ParentID:   instrs[in.Parent],
				PreviousID: instrs[in.Previous],
				Label:      in.Label,
				Code:       in.Code,
			}
			if err := tx.Put(store.Instructions, rec.ID, rec); err != nil {
				return err
			}
		}
		return nil
	})
}
