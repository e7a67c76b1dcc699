package gridmath

import "perpgrid/pkg/types"

// Tag re-exports the stable order-tag type so callers inside this package
// don't need to import pkg/types directly for every signature.
type Tag = types.Tag

const (
	tagLongIEntry            = types.TagLongInitialEntry
	tagLongPrimaryRentry     = types.TagLongPrimaryRentry
	tagLongSecondaryRentry   = types.TagLongSecondaryRentry
	tagLongClose             = types.TagLongClose
	tagLongAutoUnstuckEntry  = types.TagLongAutoUnstuckEntry
	tagLongAutoUnstuckClose  = types.TagLongAutoUnstuckClose
	tagLongBankruptcy        = types.TagLongBankruptcy
	tagShortIEntry           = types.TagShortInitialEntry
	tagShortPrimaryRentry    = types.TagShortPrimaryRentry
	tagShortSecondaryRentry  = types.TagShortSecondaryRentry
	tagShortClose            = types.TagShortClose
	tagShortAutoUnstuckEntry = types.TagShortAutoUnstuckEntry
	tagShortAutoUnstuckClose = types.TagShortAutoUnstuckClose
	tagShortBankruptcy       = types.TagShortBankruptcy
	tagNone                  = types.TagNone
)
