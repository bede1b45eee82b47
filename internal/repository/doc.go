// Package repository defines the data access interfaces for neti.
//
// neti keeps no scan history. The only persisted state is the set of SSH
// host keys pinned on first use by the remote device adapter, so a device
// that later presents a different key is refused.
//
// The SQLite implementation lives in the sqlite subpackage and is tested
// against in-memory databases.
package repository
