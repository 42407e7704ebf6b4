// Package password provides versioned password hashing for the identity
// engine. New hashes use argon2id in PHC string format; verification also
// accepts legacy bcrypt hashes so existing accounts keep working, and
// NeedsUpgrade reports when a stored hash should be transparently
// re-hashed on the next successful login.
package password
