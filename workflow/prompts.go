package workflow

// Prompts holds the text/template sources sent to the generator. Each template
// receives content, min_chars and max_chars.
type Prompts struct {
	BlockSelection string
	PostGeneration string
	AdjustPost     string
}

// DefaultPrompts returns the Japanese prompts the bot posts with.
func DefaultPrompts() Prompts {
	return Prompts{
		BlockSelection: blockSelectionPrompt,
		PostGeneration: postGenerationPrompt,
		AdjustPost:     adjustPostPrompt,
	}
}

const blockSelectionPrompt = `次の文章を{{.min_chars}}文字から{{.max_chars}}文字程度のブロックに区切り、その中から1ブロックをランダムに選んで、そのまま出力してください。
ブロック以外の説明は出力しないでください。

文章:
{{.content}}
`

const postGenerationPrompt = `指示:
以下の文章をもとに、SNSに投稿する読み応えのある文章を全角{{.min_chars}}文字以上{{.max_chars}}文字以内で書いてください。
文章から{{.min_chars}}文字以上の内容を作れない場合に限り、内容を補って構いません。

文体・トーン:
・威厳はあるがカジュアルな口語。読者に直接語りかける。
・率直でストレート。厳しい表現も使うが親しみやすさは保つ。
・実体験から組み立てた理論を語る口調。丁寧かつフランクで軽快。
・一般論に寄りすぎない。権威ある言葉や研究データで説得力を持たせる。
・文末の感嘆符など軽すぎる表現は避ける。ハッシュタグは使わない。

チェックポイント:
・出力は必ず全角{{.min_chars}}文字以上{{.max_chars}}文字以内。
・投稿文だけを出力する。

文章:
{{.content}}
`

const adjustPostPrompt = `次の文章の趣旨を保ったまま、全角{{.min_chars}}文字以上{{.max_chars}}文字以内に書き直してください。
書き直した文章だけを出力してください。

文章:
{{.content}}
`
