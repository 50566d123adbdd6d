package service

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	blogIDPrefix   = "BLOG-"
	mailIDPrefix   = "MAIL-"
	blogIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	blogIDLength   = 8

	// No 0/o, 1/l/i so suffixes stay readable in URLs.
	slugSuffixAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	slugSuffixLength   = 4

	mailIDLength = 10
)

// NewBlogID returns an identifier such as BLOG-7Q2ZK0AB.
func NewBlogID() (string, error) {
	id, err := gonanoid.Generate(blogIDAlphabet, blogIDLength)
	if err != nil {
		return "", err
	}
	return blogIDPrefix + id, nil
}

// NewSlugSuffix returns the 4 character collision suffix.
func NewSlugSuffix() (string, error) {
	return gonanoid.Generate(slugSuffixAlphabet, slugSuffixLength)
}

// NewMailID returns an identifier such as MAIL-XYZ789ABCD.
func NewMailID() (string, error) {
	id, err := gonanoid.Generate(blogIDAlphabet, mailIDLength)
	if err != nil {
		return "", err
	}
	return mailIDPrefix + id, nil
}
