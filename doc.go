// Package ari is a client for the Asterisk REST Interface. It pairs the
// HTTP resource catalogs with the WebSocket event stream: Connect dials
// both, inbound events are decoded and routed to per-resource proxies, and
// every REST call runs through a request queue with retry and a circuit
// breaker so a struggling server is not hammered.
//
// Typical use:
//
//	client, err := ari.Connect(ctx, ari.Options{
//		URL:         "http://pbx.example.com:8088",
//		Username:    "ari",
//		Password:    "secret",
//		Application: "my-app",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Stop()
//
//	client.On(events.TypeStasisStart, func(ev *events.Event, instance any) {
//		ch := instance.(*ari.Channel)
//		ch.Answer(ctx)
//		ch.Play(ctx, "sound:hello-world", nil)
//	})
package ari
