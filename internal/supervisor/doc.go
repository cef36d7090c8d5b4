// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

/*
Package supervisor runs the long-lived services of the serve command under a
suture v4 supervisor tree.

	root ("retailrec")
	├── model layer ("model-layer")
	│   └── ModelReloadService
	└── api layer ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with suture's backoff. A failure in the model
layer leaves the API serving the model that is already installed.
Supervisor events are logged through zerolog via logging.NewSlogLogger and
sutureslog.

	tree := supervisor.NewTree(logging.NewSlogLogger(logger), supervisor.DefaultTreeConfig())
	tree.AddModelService(services.NewModelReloadService(reloader, time.Minute, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err := tree.Serve(ctx)
*/
package supervisor
