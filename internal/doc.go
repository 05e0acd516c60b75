// Package internal drives verification of program files.
//
// Engine loads a program, either a CFA written in YAML or a Go function
// lowered by the frontend package, runs the unwinding algorithm on it and
// summarizes the outcome as a Report.
//
// Cache keeps reports between runs. An entry stays valid while the file,
// the selected function and the configuration file are unchanged.
//
// Watch mode re-verifies files as they are written:
//
//	engine, err := internal.NewEngine(opts, logger)
//	if err != nil {
//	    // handle error
//	}
//	if err := engine.StartWatching("testdata"); err != nil {
//	    // handle error
//	}
//	err = engine.Watch(ctx, func(r types.Report) {
//	    fmt.Println(r.Filename, r.Status)
//	})
//
// This package is intended for internal use within the verifier and should
// not be imported by external packages.
package internal
