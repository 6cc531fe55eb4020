// Package datasource holds the update processor implementations: a streaming processor consuming
// a server-sent-events feed, and a polling processor fetching a full snapshot on an interval.
package datasource
