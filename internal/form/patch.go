package form

// Field is one entry of a patch. The zero Field leaves the target as is;
// Set(nil) clears it.
type Field[T any] struct {
	set bool
	val *T
}

// Set returns a field that writes v (which may be nil).
func Set[T any](v *T) Field[T] {
	if v == nil {
		return Field[T]{set: true}
	}
	c := *v
	return Field[T]{set: true, val: &c}
}

// SetValue is Set for a plain value.
func SetValue[T any](v T) Field[T] {
	return Field[T]{set: true, val: &v}
}

// IsSet reports whether the field takes part in the patch.
func (f Field[T]) IsSet() bool { return f.set }

func (f Field[T]) apply(dst **T) {
	if !f.set {
		return
	}
	if f.val == nil {
		*dst = nil
		return
	}
	c := *f.val
	*dst = &c
}

type HeaderPatch struct {
	InvoiceNumber Field[string]
	InvoiceDate   Field[string]
	VendorName    Field[string]
	Remarks       Field[string]
}

type ItemPatch struct {
	HSNSAC          Field[string]
	ItemName        Field[string]
	Quantity        Field[float64]
	Unit            Field[string]
	RatePerQuantity Field[float64]
	DiscountPercent Field[float64]
	Amount          Field[float64]
	SGSTPercent     Field[float64]
	CGSTPercent     Field[float64]
	IGSTPercent     Field[float64]
}

type TotalsPatch struct {
	TotalQuantity        Field[float64]
	TotalAmount          Field[float64]
	TotalDiscountPercent Field[float64]
	TotalDiscountAmount  Field[float64]
	FreightCharges       Field[float64]
	TotalOtherCharges    Field[float64]
	TotalSGSTAmount      Field[float64]
	TotalCGSTAmount      Field[float64]
	TotalIGSTAmount      Field[float64]
	NetAmount            Field[float64]
}
