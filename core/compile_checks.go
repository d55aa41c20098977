package core

var (
	_ RequestTokenStore  = (*MemoryRequestTokenStore)(nil)
	_ ExpiredTokenPurger = (*MemoryRequestTokenStore)(nil)
	_ LinkStore          = (*MemoryLinkStore)(nil)
	_ TokenStore         = (*CompositeTokenStore)(nil)
	_ NonceLedger        = (*MemoryNonceLedger)(nil)
	_ ExpiredTokenPurger = (*MemoryNonceLedger)(nil)
	_ PublishQueue       = (*MemoryJobQueue)(nil)
	_ PublishDispatcher  = (*AsyncPublishDispatcher)(nil)
	_ ConfigProvider     = (*CfgxConfigProvider)(nil)
	_ OptionsResolver    = GoOptionsResolver{}
)
