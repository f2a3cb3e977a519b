// Package gameserver provides the world engine that resolves session
// messages against the lobby, and the gRPC bridge service that carries
// protocol frames to it.
//
// Every transport funnels into the same Engine through
// handlers.SessionHandler, so TCP, websocket and gRPC clients share one
// world and observe the same ordering guarantees.
package gameserver
