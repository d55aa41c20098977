// Package providers groups remote service adapters. tumblr holds the blog
// API integration and devkit the scripted transport used by tests.
package providers
