// Package lendguard is the request pipeline every screen of the loan
// administration console goes through to reach the backend API.
//
// The central type is [Client]. It attaches the stored credential to each
// outbound request, classifies failures into a closed set of
// [Classification] values, retries the retriable ones with per-class budgets
// and exponential backoff, tears the session down on authentication failures,
// and surfaces every other failure through a [Notifier].
package lendguard
