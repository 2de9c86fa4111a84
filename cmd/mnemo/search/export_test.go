package searchcmder

var NewSearchCmdWithOptions = newSearchCmd
