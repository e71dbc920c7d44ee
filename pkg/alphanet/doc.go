// Package alphanet provides a transport and wire types for the Alpha Networks
// web-service API used by the streaming platform.
//
// Every call returns an envelope of the form
//
//	{"error": {"code": -1, "message": "..."} | null, "result": {...}}
//
// POST bodies are form encoded. Authentication is carried in the
// X-AN-WebService-* headers: the identity key identifies the regional
// platform, the customer and device auth tokens identify the session.
//
// Basic usage:
//
//	t := alphanet.NewClient(alphanet.WithUserAgent("connectr/1.0"))
//	t.SetBaseURL(platform.URL)
//	t.SetHeader(alphanet.HeaderIdentityKey, platform.HSSKey)
//	resp, err := t.Post(ctx, alphanet.PathListChannels)
//	env, err := alphanet.DecodeEnvelope[alphanet.ChannelsResult](resp)
package alphanet
