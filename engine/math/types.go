package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec4 represents a 4D vector, used for linear RGBA colors in shader kernels.
type Vec4 struct {
	X, Y, Z, W float32
}

func (v Vec4) Add(o Vec4) Vec4 {
	return Vec4{v.X + o.X, v.Y + o.Y, v.Z + o.Z, v.W + o.W}
}

func (v Vec4) Sub(o Vec4) Vec4 {
	return Vec4{v.X - o.X, v.Y - o.Y, v.Z - o.Z, v.W - o.W}
}

func (v Vec4) Scale(s float32) Vec4 {
	return Vec4{v.X * s, v.Y * s, v.Z * s, v.W * s}
}

func (v Vec4) Mix(o Vec4, t float32) Vec4 {
	return Vec4{Lerp(v.X, o.X, t), Lerp(v.Y, o.Y, t), Lerp(v.Z, o.Z, t), Lerp(v.W, o.W, t)}
}

// Luma is the Rec. 601 weighted brightness of the rgb channels.
func (v Vec4) Luma() float32 {
	return v.X*0.299 + v.Y*0.587 + v.Z*0.114
}
