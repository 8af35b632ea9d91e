// Package awsmeta provides the types, interfaces, and helpers for a
// metadata-driven client for AWS-style web services.
//
// # Overview
//
// Instead of generating one client per service, awsmeta loads a declarative
// service model (a ServiceModel built from JSON or YAML) describing the
// service's operations, their pagination rules, and its waiters. Commands
// are built against that model and executed through a uniform pipeline; a
// concrete implementation of the pipeline is provided by the awsclient
// package, which wires configuration, transport, signing, and caching. Most
// consumers should import awsclient to construct a client and then work with
// the interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/awsmeta/pkg/awsclient"
//	  "github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  model, err := awsmeta.LoadServiceModel("models/storage.json")
//	  if err != nil { log.Fatal(err) }
//
//	  cli, err := awsclient.New(&awsmeta.Config{Endpoint: "https://svc.example.com"}, model)
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := cli.Execute(ctx, mustCommand(cli, "DescribeWidgets", nil))
//	  if err != nil { log.Fatal(err) }
//	  _ = result
//	}
//
// # Pagination
//
// Operations whose model declares pagination metadata can be consumed page
// by page or item by item:
//
//	pager, err := cli.Paginate("ListWidgets", nil)
//	if err != nil { /* handle error */ }
//	for pager.HasNext() {
//	  page, err := pager.NextPage(ctx)
//	  if err != nil { break }
//	  _ = page.Items
//	}
//
// or flattened across page boundaries:
//
//	items, err := cli.Items(ctx, "ListWidgets", nil)
//	if err != nil { /* handle error */ }
//	all, err := items.All()
//
// # Waiters
//
// Model-declared waiters poll an operation until an acceptor matches:
//
//	if err := cli.Wait(ctx, "WidgetReady", map[string]interface{}{"WidgetId": id}); err != nil {
//	  /* failure state or attempts exhausted */
//	}
//
// # Errors
//
// Every failure surfaces as an *Error carrying the failing phase, the
// operation name, and service error details when the remote returned any.
// Helpers such as IsService, IsTransport, and IsThrottling make it easy to
// branch on common cases.
//
// # Interceptors and caching
//
// The package includes generic building blocks such as command/result
// interceptors (for logging, metrics, rate limiting, circuit breaking) and a
// pluggable Cache abstraction with in-memory and NATS key-value backends.
// The awsclient package composes these pieces for a sensible default client;
// applications with advanced needs can also use these primitives directly.
package awsmeta
