// Package directives finds command tokens in user-authored text.
//
// Two forms are recognized, each as a whitespace-delimited token:
//
//	!images:<permalink>   read the media of a remote post
//	!tumble               publish the text to the linked account
//
// Recognized tokens are removed from the text; everything else, including
// line breaks around them, is kept as written.
package directives
