package ingestcmder

var NewIngestCmdWithOptions = newIngestCmd
