// Package interfaces contains the contracts shared across the evaluation core: the data store and
// persistent-store capability, the update processor, big segments, and the client context each
// component is constructed with. Application code implementing a custom persistence backend only
// needs this package and ldmodel.
package interfaces
