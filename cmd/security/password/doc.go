// Package password provides Argon2id hashing and verification for the admin
// console credentials.
//
// Hashes use a PHC-like encoded string format. During Verify the encoded hash
// is treated as untrusted input: it is strictly decoded and its cost
// parameters are bounded so an attacker-supplied hash string cannot drive
// pathological resource usage.
package password
