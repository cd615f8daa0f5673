package main

import (
	"fmt"
	"io"

	"github.com/mogaika/mmd_browser/mmd"
	"github.com/mogaika/mmd_browser/web"
)

// parseCheck loads library and round trips every model, returns failures count
func parseCheck(library *web.Library, out io.Writer) int {
	if err := library.Scan(); err != nil {
		fmt.Fprintf(out, "scan failed: %v\n", err)
		return 1
	}

	failed := 0
	for _, e := range library.List() {
		e.Lock()
		err := checkEntry(e)
		e.Unlock()
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %-32s %v\n", e.Name(), err)
		} else {
			fmt.Fprintf(out, "ok   %-32s %v bones %d morphs %d\n", e.Name(), e.Model.Format(), len(e.Model.Bones), len(e.Model.Morphs))
		}
	}
	return failed
}

func checkEntry(e *web.Entry) error {
	if e.LoadErr != nil {
		return e.LoadErr
	}
	data, err := e.Model.Save()
	if err != nil {
		return err
	}
	if len(data) != e.Model.EstimateSize() {
		return fmt.Errorf("saved %d bytes, estimated %d", len(data), e.Model.EstimateSize())
	}
	reloaded := mmd.NewModel(e.Model.Encoding())
	if err := reloaded.Load(data); err != nil {
		return fmt.Errorf("saved data does not load: %v", err)
	}
	if reloaded.Count(mmd.ObjectVertex) != e.Model.Count(mmd.ObjectVertex) || reloaded.Count(mmd.ObjectBone) != e.Model.Count(mmd.ObjectBone) {
		return fmt.Errorf("saved data differs in counts")
	}
	return nil
}
