package instrument

const (
	// IDMask bounds the identifier bits packed into synthetic keys.
	IDMask = 1<<24 - 1
	// JDMask bounds the settlement day bits packed into synthetic keys.
	JDMask = 1<<16 - 1
)

// BookKey packs a contract id and settlement day into the key that indexes
// books and views.
func BookKey(cid uint32, settlDay int32) int64 {
	tjd := TJD(settlDay)
	return int64(cid&IDMask)<<16 | int64(tjd)&JDMask
}
