// Package testutil contains helper builders and stub tools used across tests
// to reduce boilerplate when constructing messages, checkpoints and tool
// capabilities. They are not intended for production usage.
package testutil
