// Package importer implements bulk CSV imports of user records,
// registrations and invitations. Every batch is checked for duplicates
// against itself and against storage before anything is written.
package importer
