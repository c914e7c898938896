package http

// WriteErrorForTest exposes writeError to the external test package.
var WriteErrorForTest = writeError

var ClientKeyForTest = clientKey
