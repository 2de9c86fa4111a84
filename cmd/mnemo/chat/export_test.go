package chatcmder

var NewChatCmdWithOptions = newChatCmd
