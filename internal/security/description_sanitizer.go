// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer はイベント説明文のHTMLコンテンツをサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧ユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizer はイベント説明文のサニタイズ機能のインターフェースを定義する。
// イベントの作成・更新時、説明文の保存前に使用される。
type DescriptionSanitizer interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// descriptionSanitizer はDescriptionSanitizerの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
//
// 説明文に画像を埋め込む用途はない（バナー画像は専用フィールドで扱う）ため、
// imgタグは許可しない。
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	// 許可タグの設定（属性なしのシンプルなタグ）
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// aタグの設定:
	// - href属性を許可
	// - 相対URLは不許可
	// - target="_blank"を全リンクに強制付与
	// - rel="noreferrer noopener"を強制付与
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &descriptionSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *descriptionSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ DescriptionSanitizer = (*descriptionSanitizer)(nil)
