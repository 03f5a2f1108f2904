// Package session
// Author: momentics <momentics@gmail.com>
//
// Connection registry: a fixed-capacity, descriptor-indexed table of
// connection slots. Slots are reused, never freed; a slot is free again only
// after Release returns. Each open gets a fresh session UUID for logging.
//
// The Registry also acts as the dispatch context (api.Controller) that
// connections use to re-arm or retire their descriptor.

package session
