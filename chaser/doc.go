// Package chaser polls a license server for seat availability and decides
// when a product can be launched.
//
// Install with:
//
//	go get github.com/CloudNativeWorks/license-chaser/chaser
//
// The engine runs one request per cycle, sleeps a fixed interval between
// cycles, and reports every outcome on an event channel:
//
//   - EventStarted once per subscription, before the first request
//   - EventResponded with the aggregated count for the selected product
//   - EventErrored for transport and response format failures
//   - EventLaunchRequested once, after which the subscription suspends
//
// # Quick Start
//
//	c := chaser.New("http://licenses.example.com:1715/api",
//	    chaser.WithCriterion(chaser.Criterion{Product: chaser.ProductCore, MajorVersion: 20}),
//	    chaser.WithAutoLaunch(true),
//	)
//	events, err := c.Start(ctx)
//	for ev := range events {
//	    if ev.Kind == chaser.EventLaunchRequested {
//	        // start the executable for ev.Product
//	    }
//	}
//
// # Single Poll
//
// The Client can be used on its own to fetch and aggregate one response:
//
//	env, err := chaser.NewClient(serverURL).ListLicenses(ctx)
//	seats := chaser.Aggregate(env, criterion)
package chaser
