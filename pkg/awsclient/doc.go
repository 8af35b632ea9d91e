// Package awsclient provides the primary entry point for constructing a
// metadata-driven service client that implements the awsmeta.Client
// interface.
//
// It layers configuration, HTTP transport, request signing, and response
// caching on top of the model types and engines defined in the awsmeta
// package. Most applications should import awsclient to build a client, then
// use the returned awsmeta.Client to execute operations, paginate list
// results, and run waiters.
//
// Quick start
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
//	  // Minimal: an endpoint and a model file (unsigned requests).
//	  cli, err := awsclient.NewFromModelFile(
//	    &awsmeta.Config{Endpoint: "https://svc.example.com"},
//	    "models/storage.json",
//	  )
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with signing credentials:
//	  model, _ := awsmeta.LoadServiceModel("models/storage.json")
//	  cli, err = awsclient.New(&awsmeta.Config{
//	    Endpoint:        "https://svc.example.com",
//	    Region:          "us-east-1",
//	    AccessKeyID:     "AKIA...",
//	    SecretAccessKey: "...",
//	  }, model)
//	  if err != nil { log.Fatal(err) }
//
//	  cmd, err := cli.BuildCommand("DescribeWidgets", nil)
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := cli.Execute(ctx, cmd)
//	  if err != nil { log.Fatal(err) }
//	  _ = result
//	}
//
// # Helpers
//
// The package also provides convenience constructors NewWithEndpoint and
// NewWithCredentials that wrap New with the appropriate configuration.
package awsclient
