// Package main provides the entry point for the pamauth service. It starts
// a web server backed by the Fiber framework that authenticates asserted
// remote users and explicit credential logins against an external authority
// and keeps the matching wiki profiles synchronized, using gorm for data
// persistence.
package main
