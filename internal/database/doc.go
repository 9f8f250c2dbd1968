// Package database owns the MongoDB connection. A single Database is created at startup, handed the collections it
// needs to prepare, and closed on shutdown.
package database
