// Package launcher hands finished transitions off to the desktop
// applications operators work in. Each handoff renders a custom protocol
// URL carrying book, user, and storage context; the launch is
// fire-and-forget and never fails the transition that triggered it.
package launcher
