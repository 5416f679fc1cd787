// Package document builds the self-contained HTML page that hosts the
// panorama viewer inside a sandbox.
//
// The page is static per screen. Per-session values reach it only through
// Render, which prepends the escaped injection ahead of every other script.
package document
