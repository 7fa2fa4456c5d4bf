package domain

// Page は物語の1ページ分のテキストと、任意の画像・音声を保持します。
type Page struct {
	Number      int     `json:"page_number"`
	Content     string  `json:"content"`
	ImagePrompt string  `json:"image_prompt"`
	ImageURL    *string `json:"image_url"`
	AudioURL    *string `json:"audio_url"`
}

// HasImage は画像の生成とアップロードが両方成功したかを返します。
func (p Page) HasImage() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

// HasAudio は音声が保存済みかを返します。
func (p Page) HasAudio() bool {
	return p.AudioURL != nil && *p.AudioURL != ""
}

// GeneratedStory は生成が完了した物語です。
type GeneratedStory struct {
	Title       string `json:"title"`
	FullContent string `json:"full_content"`
	Pages       []Page `json:"pages"`
}

// Clone はページを含めた深いコピーを返します。
func (s *GeneratedStory) Clone() *GeneratedStory {
	if s == nil {
		return nil
	}
	out := &GeneratedStory{
		Title:       s.Title,
		FullContent: s.FullContent,
		Pages:       make([]Page, len(s.Pages)),
	}
	for i, p := range s.Pages {
		out.Pages[i] = Page{
			Number:      p.Number,
			Content:     p.Content,
			ImagePrompt: p.ImagePrompt,
			ImageURL:    cloneString(p.ImageURL),
			AudioURL:    cloneString(p.AudioURL),
		}
	}
	return out
}

// DegradedPages は画像または音声が欠けているページ番号を返します。
func (s *GeneratedStory) DegradedPages() []int {
	if s == nil {
		return nil
	}
	var nums []int
	for _, p := range s.Pages {
		if !p.HasImage() || !p.HasAudio() {
			nums = append(nums, p.Number)
		}
	}
	return nums
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
