// Package password provides one-way password hashing for credential storage.
//
// Hashes use argon2id and are encoded as PHC strings
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash) so the parameters travel with
// the hash and verification keeps working after a parameter upgrade.
// Verification compares in constant time. Password strength policy does not
// live here; callers validate plaintext before hashing.
package password
