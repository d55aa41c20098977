package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginLinkMessage]    = (*BeginLinkCommand)(nil)
	_ gocmd.Commander[CompleteLinkMessage] = (*CompleteLinkCommand)(nil)
	_ gocmd.Commander[UnlinkMessage]       = (*UnlinkCommand)(nil)
	_ gocmd.Commander[ProcessTextMessage]  = (*ProcessTextCommand)(nil)
	_ gocmd.Commander[PurgeExpiredMessage] = (*PurgeExpiredCommand)(nil)
)
